package main

import "github.com/gradeforge/gradeforge/cmd"

func main() {
	cmd.Execute()
}
