/*
Copyright © 2023 Glossopoeia
*/
package main

import "github.com/glossopoeia/rexxcore/cmd"

func main() {
	cmd.Execute()
}
