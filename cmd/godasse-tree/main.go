// Command godasse-tree inspects documents the way the deserializer sees them.
package main

func main() {
	Execute()
}
