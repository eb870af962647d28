package importer

// Conn is a single entry from a Zeek conn log in JSON format. Zeek omits
// unset fields from JSON records, so the byte count fields are pointers in
// order to distinguish an unset field from a genuine zero.
type Conn struct {
	TimeStamp       float64 `json:"ts"`
	UID             string  `json:"uid"`
	Source          string  `json:"id.orig_h"`
	SourcePort      int     `json:"id.orig_p"`
	Destination     string  `json:"id.resp_h"`
	DestinationPort int     `json:"id.resp_p"`
	Proto           string  `json:"proto"`
	Service         string  `json:"service"`
	Duration        float64 `json:"duration"`
	OrigBytes       *uint64 `json:"orig_bytes"`
	RespBytes       *uint64 `json:"resp_bytes"`
	ConnState       string  `json:"conn_state"`
	LocalOrig       bool    `json:"local_orig"`
	LocalResp       bool    `json:"local_resp"`
	MissedBytes     uint64  `json:"missed_bytes"`
	History         string  `json:"history"`
	OrigPackets     uint64  `json:"orig_pkts"`
	OrigIPBytes     *uint64 `json:"orig_ip_bytes"`
	RespPackets     uint64  `json:"resp_pkts"`
	RespIPBytes     *uint64 `json:"resp_ip_bytes"`
}

// defaultConnFields is the canonical Zeek conn log column order, used as a
// fallback for TSV files that are missing their header block
var defaultConnFields = []string{
	"ts", "uid", "id.orig_h", "id.orig_p", "id.resp_h", "id.resp_p",
	"proto", "service", "duration", "orig_bytes", "resp_bytes",
	"conn_state", "local_orig", "local_resp", "missed_bytes",
	"history", "orig_pkts", "orig_ip_bytes", "resp_pkts",
	"resp_ip_bytes", "tunnel_parents",
}

const respHostField = "id.resp_h"
const origIPBytesField = "orig_ip_bytes"
