package shadow

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/barrosov/crackfleet/internal/hostcrypt"
)

func writeShadow(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shadow")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestParseFileMD5(t *testing.T) {
	path := writeShadow(t,
		"root:*:19000:0:99999:7:::",
		"alice:$1$xysalt$GgM0d3Pam5PHSNiCXKMeP0:19000:0:99999:7:::",
	)
	job, err := ParseFile(path, "alice")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if job.Algorithm != uint8(hostcrypt.MD5) {
		t.Errorf("Algorithm = %d, want %d", job.Algorithm, hostcrypt.MD5)
	}
	if job.Salt != "xysalt" {
		t.Errorf("Salt = %q, want \"xysalt\"", job.Salt)
	}
	if job.TargetHash != "GgM0d3Pam5PHSNiCXKMeP0" {
		t.Errorf("TargetHash = %q", job.TargetHash)
	}
}

func TestParseFileSHA512(t *testing.T) {
	path := writeShadow(t, "bob:$6$saltstring$abcdefhash:19000:0:99999:7:::")
	job, err := ParseFile(path, "bob")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if job.Algorithm != uint8(hostcrypt.SHA512) {
		t.Errorf("Algorithm = %d, want %d", job.Algorithm, hostcrypt.SHA512)
	}
	if job.Salt != "saltstring" || job.TargetHash != "abcdefhash" {
		t.Errorf("job = %+v", job)
	}
}

func TestParseFileBcryptSplitsFixedTail(t *testing.T) {
	salt22 := "abcdefghijklmnopqrstuv"
	hash31 := "ABCDEFGHIJKLMNOPQRSTUVWXYZabcde"
	path := writeShadow(t, "carol:$2b$10$"+salt22+hash31+":19000:0:99999:7:::")

	job, err := ParseFile(path, "carol")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if job.Algorithm != uint8(hostcrypt.Bcrypt) {
		t.Errorf("Algorithm = %d, want %d", job.Algorithm, hostcrypt.Bcrypt)
	}
	if job.Salt != "10$"+salt22 {
		t.Errorf("Salt = %q, want rounds + 22-char salt", job.Salt)
	}
	if job.TargetHash != hash31 {
		t.Errorf("TargetHash = %q, want the trailing 31 characters", job.TargetHash)
	}
}

func TestParseFileYescryptFourFields(t *testing.T) {
	path := writeShadow(t, "dave:$y$j9T$PKXc3hCOSyMqdaEQArI62/$oFBi3hhu8nh/F1S1mCh6z6:19000:0:99999:7:::")
	job, err := ParseFile(path, "dave")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if job.Algorithm != uint8(hostcrypt.Yescrypt) {
		t.Errorf("Algorithm = %d, want %d", job.Algorithm, hostcrypt.Yescrypt)
	}
	if job.Salt != "j9T$PKXc3hCOSyMqdaEQArI62/" {
		t.Errorf("Salt = %q, want params + salt", job.Salt)
	}
	if job.TargetHash != "oFBi3hhu8nh/F1S1mCh6z6" {
		t.Errorf("TargetHash = %q", job.TargetHash)
	}
}

func TestParseFileUserNotFound(t *testing.T) {
	path := writeShadow(t, "alice:$1$xy$digest:19000:0:99999:7:::")
	_, err := ParseFile(path, "mallory")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestParseFileUnknownAlgorithmTag(t *testing.T) {
	path := writeShadow(t, "eve:$9$salt$digest:19000:0:99999:7:::")
	if _, err := ParseFile(path, "eve"); err == nil {
		t.Fatalf("expected an error for an unknown algorithm tag")
	}
}

func TestParseEntryMalformed(t *testing.T) {
	for _, h := range []string{"", "x", "$1", "$1$nosecond", "$2b$10$short"} {
		if _, err := parseEntry(h); err == nil {
			t.Errorf("parseEntry(%q) succeeded, want error", h)
		}
	}
}

func TestParseEntryRejectsOversizedSalt(t *testing.T) {
	if _, err := parseEntry("$1$" + strings.Repeat("s", 80) + "$digest"); err == nil {
		t.Fatalf("expected an error for a salt beyond the wire capacity")
	}
}
