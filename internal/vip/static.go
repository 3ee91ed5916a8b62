// Package vip resolves whether an item's sender is a VIP.
package vip

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/sieve/internal/item"
)

// List is the on-disk form of a static VIP list.
type List struct {
	Addresses []string `yaml:"addresses"`
	Domains   []string `yaml:"domains"`
	UserIDs   []string `yaml:"userIds"`
}

// Static matches senders against fixed sets of addresses, domains and
// user IDs. Matching ignores case and surrounding whitespace.
type Static struct {
	addresses map[string]struct{}
	domains   map[string]struct{}
	userIDs   map[string]struct{}
}

// NewStatic builds a resolver from a list.
func NewStatic(l List) *Static {
	return &Static{
		addresses: toSet(l.Addresses, nil),
		domains:   toSet(l.Domains, func(s string) string { return strings.TrimPrefix(s, "@") }),
		userIDs:   toSet(l.UserIDs, nil),
	}
}

// ParseSenders builds a List from comma-separated entries. Entries starting
// with "@" are domains, entries containing "@" are addresses and the rest
// are user IDs.
func ParseSenders(csv string) List {
	var l List
	for _, raw := range strings.Split(csv, ",") {
		s := strings.TrimSpace(raw)
		switch {
		case s == "":
		case strings.HasPrefix(s, "@"):
			l.Domains = append(l.Domains, s)
		case strings.Contains(s, "@"):
			l.Addresses = append(l.Addresses, s)
		default:
			l.UserIDs = append(l.UserIDs, s)
		}
	}
	return l
}

// LoadFile reads a YAML VIP list.
func LoadFile(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return List{}, fmt.Errorf("read vip file: %w", err)
	}
	var l List
	if err := yaml.Unmarshal(data, &l); err != nil {
		return List{}, fmt.Errorf("parse vip file %s: %w", path, err)
	}
	return l, nil
}

// Merge returns the union of l and other.
func (l List) Merge(other List) List {
	return List{
		Addresses: append(append([]string(nil), l.Addresses...), other.Addresses...),
		Domains:   append(append([]string(nil), l.Domains...), other.Domains...),
		UserIDs:   append(append([]string(nil), l.UserIDs...), other.UserIDs...),
	}
}

// Empty reports whether the list has no entries.
func (l List) Empty() bool {
	return len(l.Addresses) == 0 && len(l.Domains) == 0 && len(l.UserIDs) == 0
}

// Len returns the number of distinct entries the resolver holds.
func (s *Static) Len() int {
	return len(s.addresses) + len(s.domains) + len(s.userIDs)
}

// IsVIP implements triage.VIPResolver. It never returns an error.
func (s *Static) IsVIP(_ context.Context, it *item.Item) (bool, error) {
	if addr := normalize(it.From.Address); addr != "" {
		if _, ok := s.addresses[addr]; ok {
			return true, nil
		}
		if at := strings.LastIndexByte(addr, '@'); at >= 0 {
			if _, ok := s.domains[addr[at+1:]]; ok {
				return true, nil
			}
		}
	}
	if id := normalize(it.From.UserID); id != "" {
		if _, ok := s.userIDs[id]; ok {
			return true, nil
		}
	}
	return false, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toSet(entries []string, fn func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		n := normalize(e)
		if fn != nil {
			n = fn(n)
		}
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
