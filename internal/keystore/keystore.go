package keystore

import (
	"sort"

	"github.com/spf13/viper"

	"keyprobe/internal/adapters/venues"
	"keyprobe/pkg/errors"
)

// Entry is one labeled credential loaded from the key file.
type Entry struct {
	Venue      string `mapstructure:"-"`
	KeyName    string `mapstructure:"-"`
	KeyID      string `mapstructure:"key_id"`
	Secret     string `mapstructure:"secret"`
	Passphrase string `mapstructure:"passphrase"`
	Simulated  bool   `mapstructure:"simulated"`
}

// Credential converts the entry into the adapter credential record.
func (e Entry) Credential() venues.Credential {
	return venues.Credential{
		Venue:      venues.VenueName(e.Venue),
		KeyName:    e.KeyName,
		KeyID:      e.KeyID,
		Secret:     e.Secret,
		Passphrase: e.Passphrase,
		Simulated:  e.Simulated,
	}
}

// Load reads a YAML key file grouping credentials by venue and labeled
// key name:
//
//	binance:
//	  read_only_1:
//	    key_id: ...
//	    secret: ...
//	okx:
//	  read_write_1:
//	    key_id: ...
//	    secret: ...
//	    passphrase: ...
//
// Key names starting with read_write declare trading permission; every
// other name is treated as read-only.
func Load(path string) ([]Entry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(errors.ErrConfig, "read key file %s: %v", path, err)
	}

	var entries []Entry
	raw := v.AllSettings()
	for venue, keysAny := range raw {
		keys, ok := keysAny.(map[string]interface{})
		if !ok {
			return nil, errors.Wrapf(errors.ErrConfig, "venue %s: expected a map of key names", venue)
		}

		for keyName := range keys {
			var entry Entry
			if err := v.UnmarshalKey(venue+"."+keyName, &entry); err != nil {
				return nil, errors.Wrapf(errors.ErrConfig, "venue %s key %s: %v", venue, keyName, err)
			}
			if entry.KeyID == "" || entry.Secret == "" {
				return nil, errors.Wrapf(errors.ErrConfig, "venue %s key %s: key_id and secret required", venue, keyName)
			}
			entry.Venue = venue
			entry.KeyName = keyName
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Venue != entries[j].Venue {
			return entries[i].Venue < entries[j].Venue
		}
		return entries[i].KeyName < entries[j].KeyName
	})

	return entries, nil
}

// Filter returns the entries for one venue, or all entries when venue is
// empty.
func Filter(entries []Entry, venue string) []Entry {
	if venue == "" {
		return entries
	}
	filtered := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Venue == venue {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
