package runtime

// Rent parameters of the default cluster configuration.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs
const (
	accountStorageOverhead  = 128
	lamportsPerByteYear     = 3480
	exemptionThresholdYears = 2
)

// MinimumBalanceForRentExemption returns the lamports an account holding
// size bytes of data needs to be exempt from rent.
func MinimumBalanceForRentExemption(size uint64) uint64 {
	return (accountStorageOverhead + size) * lamportsPerByteYear * exemptionThresholdYears
}

func isRentExempt(lamports uint64, size int) bool {
	return lamports >= MinimumBalanceForRentExemption(uint64(size))
}
