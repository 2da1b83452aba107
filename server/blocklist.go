package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/openseis/seisvol/seisvol"
)

// blockRules is an immutable snapshot of the blocklist file.
type blockRules struct {
	users map[string]string // user -> note
	ips   []ipRule
}

// ipRule matches dotted addresses octet by octet; "*" matches any octet.
type ipRule struct {
	octets []string
	note   string
}

func (rule ipRule) match(ip string) bool {
	octets := strings.Split(ip, ".")
	if len(octets) != len(rule.octets) {
		return false
	}
	for i, o := range rule.octets {
		if o != "*" && o != octets[i] {
			return false
		}
	}
	return true
}

var (
	blockMu sync.RWMutex
	blocks  *blockRules
)

func splitNote(entry string) (key, note string, err error) {
	parts := strings.SplitN(entry, ",", 2)
	key = strings.TrimSpace(parts[0])
	if key == "" {
		return "", "", fmt.Errorf("empty entry")
	}
	if len(parts) == 2 {
		note = strings.TrimSpace(parts[1])
	}
	return key, note, nil
}

func parseBlockList(path string) (*blockRules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rules := &blockRules{users: make(map[string]string)}
	scanner := bufio.NewScanner(f)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kind, entry, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%s:%d: expected u=<user> or ip=<address>, got %q", path, lineNum, line)
		}
		key, note, err := splitNote(entry)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %v", path, lineNum, err)
		}
		switch kind {
		case "u":
			rules.users[key] = note
		case "ip":
			rules.ips = append(rules.ips, ipRule{octets: strings.Split(key, "."), note: note})
		default:
			return nil, fmt.Errorf("%s:%d: unknown blocklist kind %q", path, lineNum, kind)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// loadBlockListFile reads lines of the form "u=<user>[,note]" or
// "ip=<a.b.c.d>[,note]" where any octet may be "*".  On error the previous
// rules stay in force.
func loadBlockListFile() error {
	var rules *blockRules
	if path := tc.Server.BlockListFile; path != "" {
		var err error
		if rules, err = parseBlockList(path); err != nil {
			return err
		}
		seisvol.Infof("Blocklist %s: %d users, %d address rules\n", path, len(rules.users), len(rules.ips))
	}
	blockMu.Lock()
	blocks = rules
	blockMu.Unlock()
	return nil
}

// sourceIP is the first X-Forwarded-For hop or the remote host.
func sourceIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// blockReason returns a message if the request's user or source address is
// blocked.
func (rules *blockRules) blockReason(r *http.Request) (string, bool) {
	if user := r.URL.Query().Get("u"); user != "" {
		if note, found := rules.users[user]; found {
			return fmt.Sprintf("user %q is blocked: %s", user, note), true
		}
	}
	if len(rules.ips) == 0 {
		return "", false
	}
	ip := sourceIP(r)
	for _, rule := range rules.ips {
		if rule.match(ip) {
			return fmt.Sprintf("address %q is blocked: %s", ip, rule.note), true
		}
	}
	return "", false
}

// blockMiddleware rejects requests matched by the blocklist with 429.
func blockMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		blockMu.RLock()
		rules := blocks
		blockMu.RUnlock()
		if rules != nil {
			if msg, blocked := rules.blockReason(r); blocked {
				seisvol.Infof("Blocked %s %s: %s\n", r.Method, r.URL.Path, msg)
				http.Error(w, msg, http.StatusTooManyRequests)
				return
			}
		}
		h.ServeHTTP(w, r)
	})
}
