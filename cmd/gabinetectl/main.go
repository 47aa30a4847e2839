// Command gabinetectl administers a gabinete tenancy service from the
// terminal, and mints local identity tokens for development.
package main

func main() {
	Execute()
}
