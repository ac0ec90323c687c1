// Command orginfo-harvester harvests the orginfo.uz organization directory.
package main

import (
	"github.com/JakeFAU/orginfo-harvester/cmd"
)

func main() {
	cmd.Execute()
}
