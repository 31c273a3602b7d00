// Kiln CLI - compile, load and evaluate Kiln sources in process
package main

import (
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	Execute()
}
