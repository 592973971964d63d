package mqtt

import "strings"

const TopicSeparator = "/"

// TrimTopic trims TopicSeparator from the start and end of the specified topic.
func TrimTopic(topic string) string {
	return strings.Trim(topic, TopicSeparator)
}

// JoinTopic joins non-empty component parts with TopicSeparator, trimming each part as it is appended.
func JoinTopic(parts ...string) string {
	var result strings.Builder

	for _, part := range parts {
		part = TrimTopic(part)
		if part == "" {
			continue
		}

		if result.Len() > 0 {
			result.WriteString(TopicSeparator)
		}
		result.WriteString(part)
	}

	return result.String()
}

// SplitTopic returns the levels of topic below prefix. The second return value is false if topic is not nested under
// prefix.
func SplitTopic(prefix, topic string) ([]string, bool) {
	prefix, topic = TrimTopic(prefix), TrimTopic(topic)

	rest := topic
	if prefix != "" {
		var ok bool
		if rest, ok = strings.CutPrefix(topic, prefix+TopicSeparator); !ok {
			return nil, false
		}
	}

	if rest == "" {
		return nil, false
	}

	return strings.Split(rest, TopicSeparator), true
}

// Wildcard returns the multi-level wildcard subscription for everything below prefix.
func Wildcard(prefix string) string {
	return JoinTopic(prefix, "#")
}
