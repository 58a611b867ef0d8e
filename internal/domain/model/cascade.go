package model

// CascadeCounts reports how many dependent rows a teardown removed.
type CascadeCounts struct {
	Matches  int64 `json:"matches"`
	Messages int64 `json:"messages"`
	Swipes   int64 `json:"swipes"`
}

func (c CascadeCounts) Add(other CascadeCounts) CascadeCounts {
	return CascadeCounts{
		Matches:  c.Matches + other.Matches,
		Messages: c.Messages + other.Messages,
		Swipes:   c.Swipes + other.Swipes,
	}
}

func (c CascadeCounts) Total() int64 {
	return c.Matches + c.Messages + c.Swipes
}
