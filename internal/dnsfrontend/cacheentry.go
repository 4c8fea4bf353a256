package dnsfrontend

import "github.com/miekg/dns"

// encodeCacheEntry packs msg and appends the is_domestic flag as a single
// trailing byte, matching spec §3's CacheEntry wire shape.
func encodeCacheEntry(msg *dns.Msg, isDomestic bool) ([]byte, error) {
	raw, err := msg.Pack()
	if err != nil {
		return nil, err
	}
	flag := byte(0)
	if isDomestic {
		flag = 1
	}
	return append(raw, flag), nil
}

// decodeCacheEntry is the inverse of encodeCacheEntry.
func decodeCacheEntry(blob []byte) (msg *dns.Msg, isDomestic bool, ok bool) {
	if len(blob) < 2 {
		return nil, false, false
	}
	flag := blob[len(blob)-1]
	m := new(dns.Msg)
	if err := m.Unpack(blob[:len(blob)-1]); err != nil {
		return nil, false, false
	}
	return m, flag == 1, true
}
