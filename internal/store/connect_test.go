package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		wantBackend string
		wantConn    string
		wantErr     error
	}{
		{name: "mongodb", uri: "mongodb://localhost:27017/stress", wantBackend: "mongodb", wantConn: "mongodb://localhost:27017/stress"},
		{name: "mongodb srv", uri: "mongodb+srv://u:p@cluster.example.net/stress", wantBackend: "mongodb", wantConn: "mongodb+srv://u:p@cluster.example.net/stress"},
		{name: "postgres", uri: "postgres://u:p@localhost/db", wantBackend: "postgres", wantConn: "postgres://u:p@localhost/db"},
		{name: "postgresql", uri: "postgresql://localhost/db?sslmode=disable", wantBackend: "postgres", wantConn: "postgresql://localhost/db?sslmode=disable"},
		{name: "mysql strips prefix", uri: "mysql://u:p@tcp(localhost:3306)/db", wantBackend: "mysql", wantConn: "u:p@tcp(localhost:3306)/db"},
		{name: "sqlite strips prefix", uri: "sqlite://data/stress.db", wantBackend: "sqlite", wantConn: "data/stress.db"},
		{name: "sqlite3 absolute path", uri: "sqlite3:///tmp/stress.db", wantBackend: "sqlite", wantConn: "/tmp/stress.db"},
		{name: "upper case scheme", uri: "POSTGRES://localhost/db", wantBackend: "postgres", wantConn: "POSTGRES://localhost/db"},
		{name: "empty", uri: "", wantErr: ErrInvalidArgument},
		{name: "no scheme", uri: "stress.db", wantErr: ErrUnsupportedScheme},
		{name: "unknown scheme", uri: "redis://localhost:6379", wantErr: ErrUnsupportedScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, conn, err := ParseURI(tt.uri)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBackend, backend)
			assert.Equal(t, tt.wantConn, conn)
		})
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()

	a, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer func() { _ = a.Close(ctx) }()

	assert.Equal(t, Relational, a.Kind())
	assert.Equal(t, "sqlite", a.Backend())
}

func TestOpenFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		uri     string
		wantErr error
	}{
		{name: "unsupported scheme", uri: "redis://localhost", wantErr: ErrUnsupportedScheme},
		{name: "sqlite without path", uri: "sqlite://", wantErr: ErrConnectionFailure},
		{name: "sqlite in missing directory", uri: "sqlite://" + filepath.Join(t.TempDir(), "missing", "x.db"), wantErr: ErrConnectionFailure},
		{name: "mongodb without database", uri: "mongodb://localhost:27017", wantErr: ErrConnectionFailure},
		{name: "mysql without database", uri: "mysql://u:p@tcp(localhost:3306)/", wantErr: ErrConnectionFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Open(ctx, tt.uri)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, a)
		})
	}
}

func TestMongoDatabaseName(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{uri: "mongodb://localhost:27017/stress", want: "stress"},
		{uri: "mongodb://u:p@h1:27017,h2:27017/stress?replicaSet=rs0", want: "stress"},
		{uri: "mongodb+srv://cluster.example.net/stress?retryWrites=true", want: "stress"},
		{uri: "mongodb://localhost:27017/", want: ""},
		{uri: "mongodb://localhost:27017", want: ""},
		{uri: "localhost", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, mongoDatabaseName(tt.uri))
		})
	}
}
