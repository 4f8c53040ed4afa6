package launchpad

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// ReadCredentials reads OAuth credentials from the named file.
func ReadCredentials(name string) (*Credentials, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cred, err := parseCredentials(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return cred, nil
}

// parseCredentials reads the first section of a launchpadlib
// credentials file. Later sections are ignored.
func parseCredentials(r io.Reader) (*Credentials, error) {
	var cred Credentials
	sections := 0
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			sections++
			if sections > 1 {
				break
			}
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected = after key", n)
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		switch k {
		case "consumer_key":
			cred.ConsumerKey = v
		case "consumer_secret":
			cred.ConsumerSecret = v
		case "access_token":
			cred.AccessToken = v
		case "access_secret":
			cred.AccessSecret = v
		default:
			return nil, fmt.Errorf("line %d: unknown key %q", n, k)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cred.ConsumerKey == "" {
		return nil, fmt.Errorf("missing consumer_key")
	} else if cred.AccessToken == "" {
		return nil, fmt.Errorf("missing access_token")
	}
	return &cred, nil
}
