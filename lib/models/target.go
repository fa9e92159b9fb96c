package models

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"

	"github.com/GOSC-CNIC/probewatch/lib/errs"
)

type SchemeType string

const (
	SchemeHTTP SchemeType = "http"
	SchemeTCP  SchemeType = "tcp"
)

// TCPPathSentinel is the only path a tcp target may carry; tcp probes have
// no request path, the column still needs a stable value for hashing.
const TCPPathSentinel = "/"

// NormalizedTarget is the canonical form of a monitoring target. Identity is
// derived from the three parts; editing any part yields a new identity.
type NormalizedTarget struct {
	Scheme string
	Host   string
	Path   string
}

// NormalizeTarget validates and canonicalizes scheme+host+path.
// Scheme and host are lowercased; an empty path becomes "/".
func NormalizeTarget(scheme, host, path string) (*NormalizedTarget, error) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	host = strings.ToLower(strings.TrimSpace(host))

	switch scheme {
	case "http", "https", "tcp":
	default:
		return nil, errs.Newf(errs.CodeInvalidScheme, "unsupported scheme %q", scheme)
	}

	if host == "" || strings.ContainsAny(host, "/?#@ \t") {
		return nil, errs.Newf(errs.CodeInvalidHostname, "invalid hostname %q", host)
	}

	if path == "" {
		path = "/"
	}
	if scheme == "tcp" && path != TCPPathSentinel {
		return nil, errs.New(errs.CodeInvalidURI, "tcp targets must not carry a uri")
	}
	if !strings.HasPrefix(path, "/") || strings.ContainsAny(path, "# \t") {
		return nil, errs.Newf(errs.CodeInvalidURI, "invalid uri %q", path)
	}

	t := &NormalizedTarget{Scheme: scheme, Host: host, Path: path}

	u, err := url.Parse(t.URL())
	if err != nil || u.Scheme != scheme || u.Host != host || u.Hostname() == "" {
		return nil, errs.Newf(errs.CodeInvalidURL, "invalid url %q", t.URL())
	}
	return t, nil
}

// URL renders the canonical target string, the one handed to the poller fleet.
func (t *NormalizedTarget) URL() string {
	return t.Scheme + "://" + t.Host + t.Path
}

// Identity is the stable hash shared by every subscription to the same URL.
func (t *NormalizedTarget) Identity() string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(t.URL())))
}

func (t *NormalizedTarget) Type() SchemeType {
	if t.Scheme == "tcp" {
		return SchemeTCP
	}
	return SchemeHTTP
}
