package domain

import "strings"

// RecognizedZoneSettings is the closed set of zone setting keys this engine
// knows about. Keys outside the set load fine but are surfaced as warnings so
// newer provider settings do not break older engines.
var RecognizedZoneSettings = map[string]bool{
	"always_online":            true,
	"always_use_https":         true,
	"automatic_https_rewrites": true,
	"brotli":                   true,
	"browser_cache_ttl":        true,
	"browser_check":            true,
	"cache_level":              true,
	"challenge_ttl":            true,
	"development_mode":         true,
	"early_hints":              true,
	"email_obfuscation":        true,
	"hotlink_protection":       true,
	"http2":                    true,
	"http3":                    true,
	"ip_geolocation":           true,
	"ipv6":                     true,
	"min_tls_version":          true,
	"minify":                   true,
	"mirage":                   true,
	"opportunistic_encryption": true,
	"origin_ca_key":            true,
	"polish":                   true,
	"privacy_pass":             true,
	"rocket_loader":            true,
	"security_header":          true,
	"security_level":           true,
	"server_side_exclude":      true,
	"ssl":                      true,
	"ssl_mode":                 true,
	"tls_1_3":                  true,
	"waf":                      true,
	"websockets":               true,
	"0rtt":                     true,
}

// RecognizedLocalFields is the closed set of locally tracked configuration
// fields.
var RecognizedLocalFields = map[string]bool{
	"security_level":    true,
	"ssl_mode":          true,
	"bot_fight_mode":    true,
	"browser_integrity": true,
	"challenge_passage": true,
	"under_attack":      true,
	"notes":             true,
}

// secretSettingKeys flags settings whose raw values must never leave the
// provider when a snapshot is built without secrets.
var secretSettingKeys = map[string]bool{
	"origin_ca_key": true,
}

// IsSecretSetting reports whether a setting key is secret-bearing. Beyond the
// explicit set, any key ending in _token, _key, or _secret is treated as
// secret-bearing.
func IsSecretSetting(key string) bool {
	if secretSettingKeys[key] {
		return true
	}
	return strings.HasSuffix(key, "_token") ||
		strings.HasSuffix(key, "_key") ||
		strings.HasSuffix(key, "_secret")
}
