package main

import "github.com/wxledgerhq/wxledger/cmd"

func main() {
	cmd.Execute()
}
