package chain

import "math/big"

// durationThreshold is the §4.5 difficulty-recurrence cutoff: children
// arriving within this many seconds of their parent push difficulty up.
const durationThreshold = 5

// NextDifficulty implements the §4.5 difficulty recurrence:
//
//	offset = parent.difficulty / 1024
//	sign   = +1 if (timestamp - parent.timestamp) < 5 else -1
//	difficulty = parent.difficulty + sign*offset
func NextDifficulty(parentDifficulty *big.Int, parentTimestamp, timestamp uint64) *big.Int {
	offset := new(big.Int).Rsh(parentDifficulty, 10) // /1024
	next := new(big.Int).Set(parentDifficulty)
	// Compare as signed: a child timestamped before its parent makes the
	// difference negative, which is still "< 5" and must push difficulty
	// up, the same as a fast block does. A plain uint64 subtraction would
	// underflow and wrongly fall to the slow-block branch.
	if int64(timestamp)-int64(parentTimestamp) < durationThreshold {
		next.Add(next, offset)
	} else {
		next.Sub(next, offset)
	}
	if next.Sign() < 0 {
		next.SetInt64(0)
	}
	return next
}

// NextGasLimit implements the §4.5 gas-limit recurrence:
//
//	gas_limit = max(125000, (parent.gas_limit*1023 + parent.gas_used*6/5) / 1024)
func NextGasLimit(parentGasLimit, parentGasUsed *big.Int) *big.Int {
	a := new(big.Int).Mul(parentGasLimit, big.NewInt(1023))
	b := new(big.Int).Mul(parentGasUsed, big.NewInt(6))
	b.Div(b, big.NewInt(5))
	sum := new(big.Int).Add(a, b)
	sum.Div(sum, big.NewInt(1024))
	if sum.Cmp(big.NewInt(MinGasLimit)) < 0 {
		return big.NewInt(MinGasLimit)
	}
	return sum
}
