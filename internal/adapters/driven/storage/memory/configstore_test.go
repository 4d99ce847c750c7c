package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("ingestion.name", "doj"))
	require.NoError(t, store.Set("ingestion.name", "fbi"))

	val, ok := store.Get("ingestion.name")
	assert.True(t, ok)
	assert.Equal(t, "fbi", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_NewConfigStoreWith(t *testing.T) {
	store := NewConfigStoreWith(map[string]any{
		"search.default_limit": 50,
		"ocr.engines":          []any{"tesseract", "vision"},
	})

	assert.Equal(t, 50, store.GetInt("search.default_limit"))
	assert.Equal(t, []string{"tesseract", "vision"}, store.GetStringSlice("ocr.engines"))
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStoreWith(map[string]any{
		"str":        "value",
		"int":        42,
		"int64":      int64(7),
		"float":      0.3,
		"bool":       true,
		"dur_string": "90s",
		"dur_int":    60,
		"dur_native": 2 * time.Minute,
		"dur_bad":    "soon",
		"floats":     []any{1.0, int64(2), 3},
		"floats_raw": []float64{1.5},
	})

	assert.Equal(t, "value", store.GetString("str"))
	assert.Equal(t, "", store.GetString("int"))

	assert.Equal(t, 42, store.GetInt("int"))
	assert.Equal(t, 7, store.GetInt("int64"))
	assert.Equal(t, 0, store.GetInt("float"))
	assert.Equal(t, 0, store.GetInt("str"))

	assert.InDelta(t, 0.3, store.GetFloat("float"), 1e-9)
	assert.InDelta(t, 42.0, store.GetFloat("int"), 1e-9)
	assert.Zero(t, store.GetFloat("str"))

	assert.True(t, store.GetBool("bool"))
	assert.False(t, store.GetBool("str"))

	assert.Equal(t, 90*time.Second, store.GetDuration("dur_string"))
	assert.Equal(t, 60*time.Second, store.GetDuration("dur_int"))
	assert.Equal(t, 2*time.Minute, store.GetDuration("dur_native"))
	assert.Zero(t, store.GetDuration("dur_bad"))
	assert.Zero(t, store.GetDuration("missing"))

	assert.Equal(t, []float64{1, 2, 3}, store.GetFloatSlice("floats"))
	assert.Equal(t, []float64{1.5}, store.GetFloatSlice("floats_raw"))
	assert.Nil(t, store.GetFloatSlice("str"))
}

func TestConfigStore_GetInt_TruncatesFloat(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("n", 123.7)
	assert.Equal(t, 123, store.GetInt("n"))
}

func TestConfigStore_SaveLoadPath(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("k", "v")

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, "v", store.GetString("k"))
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", id)
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_ = store.GetDuration(key)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		assert.Equal(t, i, store.GetInt(fmt.Sprintf("key-%d", i)))
	}
}
