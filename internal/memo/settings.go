package memo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"memosync/internal/remote"
)

// Kind says how a settings block is serialized locally and remotely.
type Kind int

const (
	// KindJSON blocks are JSON text locally and the same JSON value remotely.
	KindJSON Kind = iota
	// KindString blocks are plain strings on both sides.
	KindString
	// KindBool blocks are "true"/"false" locally and a boolean remotely.
	KindBool
)

// Block is one named entry of the user settings bundle.
type Block struct {
	LocalKey    string
	RemoteField string
	Kind        Kind
	Default     string
}

// Blocks lists every settings block in push order.
var Blocks = []Block{
	{LocalKey: "pinnedMemos", RemoteField: "pinned_memos", Kind: KindJSON, Default: `[]`},
	{LocalKey: "themeColor", RemoteField: "theme_color", Kind: KindString, Default: "#818CF8"},
	{LocalKey: "darkMode", RemoteField: "dark_mode", Kind: KindBool, Default: "false"},
	{LocalKey: "hitokotoConfig", RemoteField: "hitokoto_config", Kind: KindJSON,
		Default: `{"enabled":true,"types":["a","b","c","d","i","j","k"]}`},
	{LocalKey: "fontConfig", RemoteField: "font_config", Kind: KindJSON,
		Default: `{"selectedFont":"default"}`},
	{LocalKey: "backgroundConfig", RemoteField: "background_config", Kind: KindJSON,
		Default: `{"imageUrl":"","brightness":50,"blur":10,"useRandom":false}`},
	{LocalKey: "avatarConfig", RemoteField: "avatar_config", Kind: KindJSON, Default: `{"imageUrl":""}`},
	{LocalKey: "canvasState", RemoteField: "canvas_config", Kind: KindJSON, Default: `null`},
	{LocalKey: "musicConfig", RemoteField: "music_config", Kind: KindJSON,
		Default: `{"enabled":true,"customSongs":[]}`},
	{LocalKey: "s3Config", RemoteField: "s3_config", Kind: KindJSON,
		Default: `{"enabled":false,"endpoint":"","accessKeyId":"","secretAccessKey":"","bucket":"","region":"auto","publicUrl":"","provider":"r2"}`},
}

// BlockByKey finds a block by its local key.
func BlockByKey(key string) (Block, bool) {
	for _, b := range Blocks {
		if b.LocalKey == key {
			return b, true
		}
	}
	return Block{}, false
}

// Validate checks that value is a well-formed local value for the block.
func (b Block) Validate(value string) error {
	switch b.Kind {
	case KindJSON:
		if !json.Valid([]byte(value)) {
			return fmt.Errorf("%s: value is not valid JSON", b.LocalKey)
		}
	case KindBool:
		if _, ok := CoerceBool(value); !ok {
			return fmt.Errorf("%s: value must be true or false", b.LocalKey)
		}
	}
	return nil
}

// Settings holds local settings values by local key. A missing key means the
// block is absent on the device.
type Settings map[string]string

// SettingsKey is the lookup filter for a user's settings record.
func SettingsKey(userID string) remote.Filter {
	return remote.Eq("user", userID)
}

// WithDefaults returns a copy of s where every absent block holds its default.
func (s Settings) WithDefaults() Settings {
	out := make(Settings, len(Blocks))
	for _, b := range Blocks {
		if v, ok := s[b.LocalKey]; ok {
			out[b.LocalKey] = v
		} else {
			out[b.LocalKey] = b.Default
		}
	}
	return out
}

// Remote merges every block into one settings record for userID. Absent
// blocks take their defaults.
func (s Settings) Remote(userID string) (remote.Data, error) {
	full := s.WithDefaults()
	data := remote.Data{"user": userID}
	for _, b := range Blocks {
		v := full[b.LocalKey]
		switch b.Kind {
		case KindJSON:
			if !json.Valid([]byte(v)) {
				return nil, fmt.Errorf("settings block %s is not valid JSON", b.LocalKey)
			}
			data[b.RemoteField] = json.RawMessage(v)
		case KindString:
			data[b.RemoteField] = v
		case KindBool:
			data[b.RemoteField] = v == "true"
		}
	}
	return data, nil
}

// SettingsFromRecord returns the local values of the blocks present in a
// settings record. Null or unusable remote values count as absent.
func SettingsFromRecord(rec remote.Record) (Settings, error) {
	out := Settings{}
	for _, b := range Blocks {
		v, ok := rec.Data[b.RemoteField]
		if !ok || v == nil {
			continue
		}
		switch b.Kind {
		case KindJSON:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("settings field %s: %w", b.RemoteField, err)
			}
			out[b.LocalKey] = string(raw)
		case KindString:
			if str, ok := v.(string); ok && str != "" {
				out[b.LocalKey] = str
			}
		case KindBool:
			if flag, ok := CoerceBool(v); ok {
				out[b.LocalKey] = strconv.FormatBool(flag)
			}
		}
	}
	return out, nil
}

// CoerceBool interprets a remote dark-mode value. Booleans pass through,
// numbers are true when non-zero, and the strings true/false/1/0/yes/no/on/off
// are accepted case-insensitively. Anything else is reported as not a bool.
func CoerceBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case float64:
		return x != 0, true
	case int:
		return x != 0, true
	case int64:
		return x != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	}
	return false, false
}
