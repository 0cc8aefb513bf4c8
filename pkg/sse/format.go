package sse

// Format renders payload as a complete data frame. The framing has no escape
// mechanism, so a payload containing Delimiter splits into several frames.
func Format(payload string) string {
	return DataPrefix + payload + Delimiter
}

// End is the frame that terminates a stream.
var End = Format(Sentinel)
