package rules

import "fmt"

// PairKey identifies an unordered pair of users. Low is always the smaller id.
type PairKey struct {
	Low  int64
	High int64
}

func NewPairKey(a, b int64) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

func (k PairKey) String() string {
	return fmt.Sprintf("pair:%d:%d", k.Low, k.High)
}

func (k PairKey) Valid() bool {
	return k.Low > 0 && k.High > 0 && k.Low != k.High
}

// Other returns the member of the pair that is not userID.
func (k PairKey) Other(userID int64) int64 {
	if k.Low == userID {
		return k.High
	}
	return k.Low
}
