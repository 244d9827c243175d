package store

// BaseKnowledgeStore is the base implementation of a KnowledgeStore. Client is the underlying datastore client,
// such as a database connection.
type BaseKnowledgeStore[T any] struct {
	Client T
}
