package domain

// Channel names a broadcast topic subscribers can listen on.
type Channel string

const (
	ChannelNew     Channel = "new"
	ChannelKickoff Channel = "kickoff"
	ChannelScore   Channel = "score"
	ChannelEnded   Channel = "ended"
	// ChannelDeleted carries DELETED signals so clients drop the match.
	ChannelDeleted Channel = "deleted"
)

// Channels returns the broadcast channels in match lifecycle order.
func Channels() []Channel {
	return []Channel{ChannelNew, ChannelKickoff, ChannelScore, ChannelEnded, ChannelDeleted}
}

// ParseChannel returns the channel named s, or false if s is not a broadcast channel.
func ParseChannel(s string) (Channel, bool) {
	for _, c := range Channels() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

func (c Channel) String() string { return string(c) }

// Classify maps an event to exactly one broadcast channel.
//
// Priority: NOT_STARTED -> new, FINISHED -> ended, IN_PROGRESS at minute 0 ->
// kickoff, anything else -> score. DELETED never reaches the classifier; the
// intake removes it from the cache and announces it on ChannelDeleted.
func Classify(e *ScoreEvent) Channel {
	switch {
	case e.Status == StatusNotStarted:
		return ChannelNew
	case e.Status == StatusFinished:
		return ChannelEnded
	case e.Status == StatusInProgress && e.ElapsedMinutes == 0:
		return ChannelKickoff
	default:
		return ChannelScore
	}
}
