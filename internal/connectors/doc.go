// Package connectors builds the crawler selected by configuration. Each
// crawler knows how to discover and fetch files from one kind of source
// (listing site, challenge-protected library, upload folder).
//
// Crawler kinds are registered with the Factory at startup.
package connectors
