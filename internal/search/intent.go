package search

import (
	"regexp"
	"strings"
)

// queryIntent is the coarse classification driving the keyword scorer's
// bonus rules and the fusion weights.
type queryIntent struct {
	isCommand         bool
	isConcept         bool
	isTroubleshooting bool
}

var (
	tokenPattern = regexp.MustCompile(`[a-z0-9]+|\p{Han}+`)

	commandMarkers = []string{
		"nv set", "nv show", "nv config", "nvue", "show", "config",
		"配置", "设置", "如何使用", "怎么配", "命令", "启用", "开启",
	}
	conceptMarkers = []string{
		"what is", "what's", "介绍", "定义", "是什么", "原理", "区别",
	}
	troubleMarkers = []string{
		"debug", "troubleshoot", "fail", "error", "not working",
		"错误", "问题", "故障", "排查", "起不来", "不通", "丢包",
	}
)

// tokenize splits the lower-cased query into latin/digit runs and Han runs.
// Single-character latin tokens are noise and dropped; single Han characters
// are kept, they carry meaning on their own.
func tokenize(query string) []string {
	lowered := strings.ToLower(query)
	var tokens []string
	for _, t := range tokenPattern.FindAllString(lowered, -1) {
		if len(t) == 1 && t[0] < 0x80 {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// classifyIntent matches the lower-cased query against the marker lists.
// A query can carry several intents at once.
func classifyIntent(query string) queryIntent {
	lowered := strings.ToLower(query)
	var intent queryIntent
	for _, m := range commandMarkers {
		if strings.Contains(lowered, m) {
			intent.isCommand = true
			break
		}
	}
	for _, m := range conceptMarkers {
		if strings.Contains(lowered, m) {
			intent.isConcept = true
			break
		}
	}
	for _, m := range troubleMarkers {
		if strings.Contains(lowered, m) {
			intent.isTroubleshooting = true
			break
		}
	}
	return intent
}
