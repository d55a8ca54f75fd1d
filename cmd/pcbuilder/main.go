// Command pcbuilder serves and runs PC component builds.
package main

func main() {
	Execute()
}
