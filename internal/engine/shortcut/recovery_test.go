package shortcut

import (
	"context"
	"errors"
	"testing"
)

func TestIsCorruptionError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database disk image is malformed"), true},
		{errors.New("file is not a database"), true},
		{errors.New("SQLITE_CORRUPT: corrupt"), true},
		{errors.New("context deadline exceeded"), false},
	}
	for _, c := range cases {
		if got := isCorruptionError(c.err); got != c.want {
			t.Errorf("isCorruptionError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestRunIntegrityCheck_PassesOnFreshStore(t *testing.T) {
	db := openTestDB(t)
	if err := RunIntegrityCheck(context.Background(), db.DB()); err != nil {
		t.Errorf("expected a freshly migrated store to pass an integrity check, got %v", err)
	}
}
