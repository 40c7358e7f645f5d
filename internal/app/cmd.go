package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はゲートウェイサーバーとして起動する。引数なしの既定値。
	CommandServe Command = "serve"
	// CommandWorker はPostgreSQLに残った古いトークンを定期削除する。
	CommandWorker Command = "worker"
	// CommandMigrate はトークン保存用テーブルのマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のゲートウェイの/healthを叩く。distrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

// commands は受け付けるサブコマンドの一覧。usage表示の順序でもある。
var commands = []struct {
	cmd      Command
	summary  string
	needsDSN bool
}{
	{CommandServe, "ゲートウェイサーバーを起動する", false},
	{CommandWorker, "古いトークンを定期削除する", true},
	{CommandMigrate, "マイグレーションを適用する", true},
	{CommandHealthcheck, "/healthを確認する", false},
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを決める。
// 引数がない場合はCommandServe。大文字小文字は区別しない。
// 未知のサブコマンドはタイプミスでサーバーが起動しないようエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return CommandServe, nil
	}

	name := Command(strings.ToLower(strings.TrimSpace(args[0])))
	for _, c := range commands {
		if c.cmd == name {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q\n%s", args[0], Usage())
}

// RequiresDatabase はDATABASE_URLが必須のサブコマンドかを返す。
func (c Command) RequiresDatabase() bool {
	for _, def := range commands {
		if def.cmd == c {
			return def.needsDSN
		}
	}
	return false
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: storefront [command]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.summary)
	}
	return b.String()
}
