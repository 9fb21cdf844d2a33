package main

import (
	cmd "github.com/cozy-creator/captcha-server/cmd/captcha"
)

func main() {
	cmd.Execute()
}
