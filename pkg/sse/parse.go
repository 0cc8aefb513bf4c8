package sse

import "strings"

// Parse classifies a raw frame as returned by Splitter.Push.
func Parse(raw string) Frame {
	payload, ok := strings.CutPrefix(raw, DataPrefix)
	if !ok {
		return Frame{Kind: KindMalformed, Payload: raw}
	}

	if payload == Sentinel {
		return Frame{Kind: KindSentinel, Payload: payload}
	}

	return Frame{Kind: KindData, Payload: payload}
}
