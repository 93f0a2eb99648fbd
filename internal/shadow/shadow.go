// Package shadow parses a shadow-style credential line into a
// protocol.CrackJob. The controller calls this once at startup, never
// again; nothing here touches the coordination protocol.
package shadow

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/barrosov/crackfleet/internal/hostcrypt"
	"github.com/barrosov/crackfleet/internal/protocol"
)

// ErrUserNotFound is returned when no line in the shadow file matches
// the requested username.
var ErrUserNotFound = fmt.Errorf("shadow: user not found")

// ParseFile scans path line by line looking for a ":"-delimited entry
// whose first field equals user, and builds a CrackJob from its
// "$algo$params$hash" second field.
func ParseFile(path, user string) (protocol.CrackJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return protocol.CrackJob{}, fmt.Errorf("shadow: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.SplitN(line, ":", 3)
		if len(fields) < 2 || fields[0] != user {
			continue
		}
		return parseEntry(fields[1])
	}
	if err := scanner.Err(); err != nil {
		return protocol.CrackJob{}, fmt.Errorf("shadow: read %s: %w", path, err)
	}
	return protocol.CrackJob{}, fmt.Errorf("%w: %q", ErrUserNotFound, user)
}

// parseEntry splits the "$algo$params$hash[$...]" hash field carried
// by a shadow line into a CrackJob, handling bcrypt's and yescrypt's
// extra '$'-delimited segment.
func parseEntry(h string) (protocol.CrackJob, error) {
	if len(h) == 0 || h[0] != '$' {
		return protocol.CrackJob{}, fmt.Errorf("shadow: hash field does not start with '$'")
	}

	p1 := strings.IndexByte(h[1:], '$')
	if p1 < 0 {
		return protocol.CrackJob{}, fmt.Errorf("shadow: malformed hash field: missing second '$'")
	}
	p1 += 1 // index into h, of the '$' after the algo tag
	rest := h[p1+1:]
	p2 := strings.IndexByte(rest, '$')
	if p2 < 0 {
		return protocol.CrackJob{}, fmt.Errorf("shadow: malformed hash field: missing third '$'")
	}

	algoTag := h[1:p1]
	var algo hostcrypt.Algorithm
	switch {
	case algoTag == "1":
		algo = hostcrypt.MD5
	case strings.HasPrefix(algoTag, "2"):
		algo = hostcrypt.Bcrypt
	case algoTag == "5":
		algo = hostcrypt.SHA256
	case algoTag == "6":
		algo = hostcrypt.SHA512
	case algoTag == "y":
		algo = hostcrypt.Yescrypt
	default:
		return protocol.CrackJob{}, fmt.Errorf("shadow: unknown algorithm tag %q", algoTag)
	}

	switch algo {
	case hostcrypt.Bcrypt:
		// h = "$2b$<rounds>$<22-char-salt><31-char-hash>", combined
		// tail is always 53 characters.
		combined := rest[p2+1:]
		if len(combined) < 53 {
			return protocol.CrackJob{}, fmt.Errorf("shadow: bcrypt tail too short: %d bytes", len(combined))
		}
		rounds := rest[:p2]
		return newJob(algo, rounds+"$"+combined[:22], combined[22:53])

	case hostcrypt.Yescrypt:
		// h = "$y$<params>$<salt>$<hash>", a 4-field format.
		p3 := strings.IndexByte(rest[p2+1:], '$')
		if p3 < 0 {
			return protocol.CrackJob{}, fmt.Errorf("shadow: malformed yescrypt hash field")
		}
		p3 += p2 + 1
		return newJob(algo, rest[:p3], rest[p3+1:])

	default:
		return newJob(algo, rest[:p2], rest[p2+1:])
	}
}

// newJob builds the CrackJob, enforcing the wire capacities so an
// oversized salt or hash is rejected at startup rather than truncated
// on the wire.
func newJob(algo hostcrypt.Algorithm, salt, targetHash string) (protocol.CrackJob, error) {
	targetHash = trimTrailing(targetHash)
	if len(salt) >= protocol.MaxSaltLen {
		return protocol.CrackJob{}, fmt.Errorf("shadow: salt of %d bytes exceeds capacity %d", len(salt), protocol.MaxSaltLen-1)
	}
	if len(targetHash) >= protocol.MaxHashLen {
		return protocol.CrackJob{}, fmt.Errorf("shadow: hash of %d bytes exceeds capacity %d", len(targetHash), protocol.MaxHashLen-1)
	}
	return protocol.CrackJob{Algorithm: uint8(algo), Salt: salt, TargetHash: targetHash}, nil
}

// trimTrailing drops a trailing newline; the ':'-delimited aging
// fields (lastchange/min/max/warn/inactive/expire) were already split
// off by ParseFile.
func trimTrailing(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return s
}
