package db_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atinyakov/sms-drafts/internal/client/storage"
	"github.com/atinyakov/sms-drafts/internal/db"
	"github.com/atinyakov/sms-drafts/internal/models"
	"github.com/atinyakov/sms-drafts/internal/repository"
)

func TestInitPostgres_ErrorPaths(t *testing.T) {
	cases := []struct {
		name       string
		dsn        string
		wantSubstr string
	}{
		{"invalid DSN", "some=random", "ping postgres"},
		{"empty DSN", "", "ping postgres"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := db.InitPostgres(tc.dsn)
			if err == nil {
				t.Fatalf("InitPostgres(%q) did not return error", tc.dsn)
			}
			if !strings.Contains(err.Error(), tc.wantSubstr) {
				t.Errorf("InitPostgres(%q) error = %q; want substring %q", tc.dsn, err.Error(), tc.wantSubstr)
			}
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := db.Open("mysql", "")
	require.Error(t, err)
}

func TestInitSQLite_StoreRoundTrip(t *testing.T) {
	conn, err := db.InitSQLite("file:drafts_roundtrip?mode=memory&cache=shared")
	require.NoError(t, err, "failed to open sqlite")
	defer conn.Close()

	kv, err := repository.NewSQLKV(conn, repository.DriverSQLite)
	require.NoError(t, err)

	s, err := storage.NewStore(kv)
	require.NoError(t, err)
	_, err = s.Save(models.CAScores, "s1", []byte(`{"a":1}`))
	require.NoError(t, err)
	_, err = s.Save(models.CAScores, "s1", []byte(`{"a":2}`))
	require.NoError(t, err, "upsert must overwrite the existing row")

	reloaded, err := storage.NewStore(kv)
	require.NoError(t, err)
	got, ok := reloaded.Get(models.CAScores, "s1")
	require.True(t, ok)
	require.JSONEq(t, `{"a":2}`, string(got.Data))
}
