package main

import "github.com/Qiujialin/DouyinDm/cmd/dmcli/cmd"

func main() {
	cmd.Execute()
}
