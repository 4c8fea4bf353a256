// Package config loads and validates the dns_settings.json document that
// drives both the DNS front-end and the transparent router.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/datawire/dlib/dlog"
)

const defaultListenPort = 53

// UpstreamDescriptor mirrors one entry of the "upstreams" array.
type UpstreamDescriptor struct {
	Address    string `json:"address"`
	Hostname   string `json:"hostname"`
	EnableUDP  bool   `json:"enable_udp"`
	EnableTCP  bool   `json:"enable_tcp"`
	EnableDoT  bool   `json:"enable_dot"`
	EnableDoH  bool   `json:"enable_doh"`
	IsDomestic bool   `json:"is_domestic"`
}

// hasTransport reports whether at least one transport is enabled.
func (u UpstreamDescriptor) hasTransport() bool {
	return u.EnableUDP || u.EnableTCP || u.EnableDoT || u.EnableDoH
}

// Settings is the decoded form of dns_settings.json.
type Settings struct {
	ListenIP     string               `json:"listen_ip"`
	ListenPort   int                  `json:"listen_port"`
	RedisServer  string               `json:"redis_server"`
	CacheExpire  int                  `json:"cache_expire"`
	QueryTimeout int                  `json:"query_timeout"`
	Upstreams    []UpstreamDescriptor `json:"upstreams"`
	CustomHosts  []CustomHost         `json:"custom_hosts"`
}

// CustomHost is one override rule. It's kept as a slice, not a map, so that
// configuration order ("first pattern that matches wins", spec §3) survives
// JSON decoding.
type CustomHost struct {
	Pattern string
	IP      string
}

// UnmarshalJSON preserves insertion order from a JSON object by decoding it
// through json.Decoder's token stream rather than into a Go map.
func (s *Settings) UnmarshalJSON(data []byte) error {
	type alias Settings
	aux := struct {
		CustomHosts json.RawMessage `json:"custom_hosts"`
		*alias
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.CustomHosts) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(aux.CustomHosts))
	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(err, "custom_hosts")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("custom_hosts must be a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, "custom_hosts")
		}
		key, _ := keyTok.(string)
		var val string
		if err := dec.Decode(&val); err != nil {
			return errors.Wrap(err, "custom_hosts")
		}
		s.CustomHosts = append(s.CustomHosts, CustomHost{Pattern: key, IP: val})
	}
	return nil
}

// TransferOnly reports whether TRANSFER_ONLY is set, per spec §6: when set,
// only the TransparentRouter starts.
func (s *Settings) TransferOnly() bool {
	_, ok := os.LookupEnv("TRANSFER_ONLY")
	return ok
}

// Load reads path, applies defaults, and drops any upstream that enables no
// transport (spec §3: "silently skipped").
func Load(ctx context.Context, path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading settings")
	}
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "parsing settings")
	}
	if s.ListenPort == 0 {
		s.ListenPort = defaultListenPort
	}
	kept := s.Upstreams[:0]
	for _, u := range s.Upstreams {
		if !u.hasTransport() {
			dlog.Warnf(ctx, "upstream %s has no transport enabled, skipping", u.Address)
			continue
		}
		kept = append(kept, u)
	}
	s.Upstreams = kept
	if len(s.Upstreams) == 0 {
		return nil, errors.New("settings: no usable upstream (all disabled or none configured)")
	}
	return &s, nil
}
