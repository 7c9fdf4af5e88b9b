package storage

// Package storage keeps an optional operational history of dispatch
// runs (one record per finished run). It is not a message store and
// nothing in the send path depends on it.
