package constants

type ContextKey int

const (
	PoolKey ContextKey = iota
	TxKey
	ActorKey
	LoggerKey
)
