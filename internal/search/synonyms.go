package search

import "strings"

// synonyms maps query tokens to their expansion list. Keys are lower-cased.
// The table covers the Chinese/English networking vocabulary of the corpus:
// protocol abbreviations, switch-OS command verbs and their translations.
// Expansion is one-hop only.
var synonyms = map[string][]string{
	// command verbs
	"配置":  {"config", "configure", "set", "nv set"},
	"设置":  {"config", "set"},
	"查看":  {"show", "display", "nv show"},
	"显示":  {"show", "display"},
	"命令":  {"command", "cli", "nv"},
	"如何":  {"how", "howto"},
	"启用":  {"enable", "up"},
	"禁用":  {"disable", "shutdown", "down"},
	"删除":  {"delete", "remove", "unset"},
	"重启":  {"restart", "reboot", "reload"},
	"升级":  {"upgrade", "update", "image"},
	"安装":  {"install", "setup"},

	// interfaces and link layer
	"接口":  {"interface", "port", "swp"},
	"端口":  {"port", "interface", "swp"},
	"网口":  {"interface", "port"},
	"聚合":  {"bond", "lag", "lacp", "port-channel"},
	"链路":  {"link", "interface"},
	"网桥":  {"bridge", "vlan-aware"},
	"生成树": {"stp", "spanning-tree", "rstp"},

	// l2/l3 features
	"路由":  {"route", "routing", "bgp", "ospf"},
	"静态路由": {"static route", "route"},
	"网关":  {"gateway", "vrr", "vrrp"},
	"堆叠":  {"mlag", "clag", "peerlink"},
	"双活":  {"mlag", "active-active"},
	"隧道":  {"tunnel", "vxlan", "overlay"},
	"覆盖网络": {"overlay", "vxlan", "evpn"},
	"租户":  {"vrf", "tenant"},
	"组播":  {"multicast", "pim", "igmp"},
	"环回":  {"loopback", "lo"},

	// protocols by abbreviation, both directions
	"bgp":   {"border gateway protocol", "路由", "routing"},
	"ospf":  {"路由", "routing"},
	"mlag":  {"clag", "堆叠", "双活", "peerlink", "bond"},
	"clag":  {"mlag", "peerlink"},
	"evpn":  {"vxlan", "overlay", "l2vpn"},
	"vxlan": {"evpn", "overlay", "vni", "隧道"},
	"vlan":  {"bridge", "trunk", "access"},
	"lacp":  {"bond", "lag", "聚合"},
	"bond":  {"lacp", "lag", "聚合", "mlag"},
	"vrf":   {"租户", "routing table"},
	"vrr":   {"vrrp", "网关", "gateway"},
	"stp":   {"spanning-tree", "生成树"},
	"acl":   {"access list", "filter", "防火墙"},
	"qos":   {"queue", "priority", "dscp"},
	"snmp":  {"monitor", "监控"},
	"ntp":   {"time", "时间同步"},
	"dhcp":  {"relay", "地址分配"},
	"mtu":   {"jumbo", "frame size"},

	// platform and tooling
	"nvue":    {"nv", "nv set", "nv show", "nv config"},
	"cumulus": {"nvue", "linux", "switch"},
	"交换机":     {"switch", "cumulus", "leaf", "spine"},
	"netq":    {"telemetry", "monitor"},
	"vtysh":   {"frr", "routing"},
	"frr":     {"vtysh", "routing", "bgp"},
	"日志":      {"log", "syslog", "journal"},
	"监控":      {"monitor", "snmp", "netq", "telemetry"},

	// troubleshooting vocabulary
	"故障":  {"troubleshoot", "failure", "error", "debug"},
	"错误":  {"error", "fail", "failure"},
	"问题":  {"problem", "issue", "troubleshoot"},
	"排查":  {"troubleshoot", "debug", "check"},
	"起不来": {"down", "fail", "not up"},
	"丢包":  {"drop", "packet loss"},
	"不通":  {"unreachable", "down", "fail"},
}

// expandTokens performs the one-hop synonym expansion: every token maps
// through the table directly, and any table key that is a substring of the
// token also contributes its values. The original tokens are kept first and
// duplicates are dropped.
func expandTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens)*2)
	out := make([]string, 0, len(tokens)*2)

	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	for _, tok := range tokens {
		add(tok)
	}
	for _, tok := range tokens {
		if vals, ok := synonyms[tok]; ok {
			for _, v := range vals {
				add(v)
			}
			continue
		}
		for key, vals := range synonyms {
			if key != tok && len(key) < len(tok) && strings.Contains(tok, key) {
				for _, v := range vals {
					add(v)
				}
			}
		}
	}
	return out
}
