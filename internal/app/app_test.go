package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/newsdigest/internal/composer"
	"github.com/patric-chuzhbe/newsdigest/internal/config"
	"github.com/patric-chuzhbe/newsdigest/internal/db/jsondb"
	"github.com/patric-chuzhbe/newsdigest/internal/db/memorystorage"
	"github.com/patric-chuzhbe/newsdigest/internal/fetcher"
	"github.com/patric-chuzhbe/newsdigest/internal/intent"
	"github.com/patric-chuzhbe/newsdigest/internal/llm"
	"github.com/patric-chuzhbe/newsdigest/internal/models"
	"github.com/patric-chuzhbe/newsdigest/internal/notifier"
)

func TestGetAvailableStorageType(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want int
	}{
		{name: "dsn wins", cfg: config.Config{DatabaseDSN: "postgres://x", SQLitePath: "a.db", DBFileName: "db.json"}, want: models.StorageTypePostgresql},
		{name: "sqlite before file", cfg: config.Config{SQLitePath: "a.db", DBFileName: "db.json"}, want: models.StorageTypeSQLite},
		{name: "file", cfg: config.Config{DBFileName: "db.json"}, want: models.StorageTypeFile},
		{name: "memory fallback", cfg: config.Config{}, want: models.StorageTypeMemory},
		{name: "explicit memory", cfg: config.Config{StorageType: config.StorageMemory, DatabaseDSN: "postgres://x"}, want: models.StorageTypeMemory},
		{name: "explicit sqlite", cfg: config.Config{StorageType: config.StorageSQLite}, want: models.StorageTypeSQLite},
		{name: "unknown", cfg: config.Config{StorageType: "redis"}, want: models.StorageTypeUnknown},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, getAvailableStorageType(&test.cfg))
		})
	}
}

func TestGetStorageByType(t *testing.T) {
	db, err := getStorageByType(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, &memorystorage.MemoryStorage{}, db)
	require.NoError(t, db.Close())

	db, err = getStorageByType(&config.Config{DBFileName: filepath.Join(t.TempDir(), "db.json")})
	require.NoError(t, err)
	assert.IsType(t, &jsondb.JSONDB{}, db)
	require.NoError(t, db.Close())

	_, err = getStorageByType(&config.Config{StorageType: "redis"})
	assert.Error(t, err)
}

func TestAdapterSelection(t *testing.T) {
	model := llm.New("http://127.0.0.1:1", "sk-test")

	assert.IsType(t, &intent.KeywordResolver{}, newResolver(nil))
	assert.IsType(t, &intent.OpenAIResolver{}, newResolver(model))

	assert.IsType(t, &composer.MarkdownComposer{}, newComposer(nil))
	assert.IsType(t, &composer.LLMComposer{}, newComposer(model))

	assert.IsType(t, &fetcher.HTMLFetcher{}, newFetcher(&config.Config{FirecrawlAPIKey: "fc"}, nil))
	assert.IsType(t, &fetcher.HTMLFetcher{}, newFetcher(&config.Config{}, model))
	assert.IsType(t, &fetcher.FirecrawlFetcher{}, newFetcher(&config.Config{FirecrawlAPIKey: "fc"}, model))
}

func TestNewNotifier(t *testing.T) {
	n, err := newNotifier(&config.Config{ResendAPIKey: "re", SMTPAddr: "smtp.example.com:25"})
	require.NoError(t, err)
	assert.IsType(t, &notifier.ResendNotifier{}, n)

	n, err = newNotifier(&config.Config{SMTPAddr: "smtp.example.com:25"})
	require.NoError(t, err)
	assert.IsType(t, &notifier.SMTPNotifier{}, n)

	n, err = newNotifier(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, &notifier.LogNotifier{}, n)

	_, err = newNotifier(&config.Config{SMTPAddr: "smtp.example.com:25", MailFrom: "not an address"})
	assert.Error(t, err)
}
