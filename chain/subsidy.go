package chain

import "math/big"

// Block and uncle/nephew rewards per §4.5 finalization. BlockReward is
// 1500*10**15; UncleReward is 15/16 of it; NephewReward is 1/32 of it,
// each truncated by integer division as the recurrence specifies.
var (
	BlockReward  = new(big.Int).Mul(big.NewInt(1500), new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil))
	UncleReward  = new(big.Int).Div(new(big.Int).Mul(big.NewInt(15), BlockReward), big.NewInt(16))
	NephewReward = new(big.Int).Div(BlockReward, big.NewInt(32))
)
