package db

import "testing"

func TestEnsureSQLiteDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"data/app.db", "data/app.db?_fk=1&_busy_timeout=5000&_txlock=immediate"},
		{"file:app.db?cache=shared", "file:app.db?cache=shared&_fk=1&_busy_timeout=5000&_txlock=immediate"},
		{"app.db?_fk=0&_txlock=deferred", "app.db?_fk=0&_txlock=deferred&_busy_timeout=5000"},
	}
	for _, tt := range tests {
		if got := ensureSQLiteDSN(tt.in); got != tt.want {
			t.Fatalf("ensureSQLiteDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
