// The main package for the job-aggregator executable.
package main

import "github.com/JakeFAU/job-aggregator/cmd"

func main() {
	cmd.Execute()
}
