// Command vectorcore runs the multi-tenant HNSW vector search service.
package main

func main() {
	Execute()
}
