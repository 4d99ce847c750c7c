// Package services holds pagesift's core logic behind the driving ports.
//
// A fetched file flows ContentStore -> OCRService -> TextService -> Indexer.
// The Orchestrator drives that flow under a database lease; SearchService
// and Maintenance serve operators and assistants from the same stores.
package services
