// Package web3 houses blockchain connectivity for agent sessions: the
// read-only Client interface, chain selection, and a status cache. Concrete
// clients live in the solana and ethereum sub-packages, and provider picks
// one for a configured chain type. Wallet keys live in keys.
package web3
