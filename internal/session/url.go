package session

import (
	"fmt"
	"net/url"
	"time"
)

// connectionURL builds the signed query string for the push endpoint. The
// parameter set mirrors what the web client sends; the server validates the
// signature against room_id and user_unique_id.
func connectionURL(base, roomID, uniqueID, signature string, now time.Time) string {
	ts := now.UnixMilli()

	params := url.Values{
		"app_name":              {"douyin_web"},
		"version_code":          {"180800"},
		"webcast_sdk_version":   {"1.3.0"},
		"update_version_code":   {"1.3.0"},
		"compress":              {"gzip"},
		"cursor":                {fmt.Sprintf("h-1_t-%d_r-1_d-1_u-1", ts)},
		"host":                  {"https://live.douyin.com"},
		"aid":                   {"6383"},
		"live_id":               {"1"},
		"did_rule":              {"3"},
		"debug":                 {"false"},
		"maxCacheMessageNumber": {"20"},
		"endpoint":              {"live_pc"},
		"support_wrds":          {"1"},
		"im_path":               {"/webcast/im/fetch/"},
		"user_unique_id":        {uniqueID},
		"device_platform":       {"web"},
		"cookie_enabled":        {"true"},
		"screen_width":          {"1920"},
		"screen_height":         {"1080"},
		"browser_language":      {"zh-CN"},
		"browser_platform":      {"Win32"},
		"browser_name":          {"Mozilla"},
		"browser_version":       {"5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36"},
		"browser_online":        {"true"},
		"tz_name":               {"Asia/Shanghai"},
		"identity":              {"audience"},
		"room_id":               {roomID},
		"heartbeatDuration":     {"0"},
		"signature":             {signature},
	}

	return base + "?" + params.Encode()
}
