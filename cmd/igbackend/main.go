// Command igbackend is the local HTTP backend of the IG Story Downloader
// extension, plus a small client for it.
package main

func main() {
	Execute()
}
