// Command coledb-client is an interactive SQL shell for coledb-server.
// It reads statements terminated by a semicolon (or one of a small set
// of "!"-prefixed commands), sends them over the wire, and prints the
// result the way a psql-style client would.
//
// Grounded on original_source/src/bin/dbcli.rs's Cli/run loop: a
// rustyline Editor with an InputValidator that holds a line incomplete
// until a bare ";" lexes, and an execute() that either dispatches a
// "!"-command locally or forwards the statement to the server and
// renders whichever ResultSet variant comes back. repl's accumulation
// of lines until statementComplete holds plays the role rustyline's
// Validator does here.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/coledb/coledb/internal/executor"
	"github.com/coledb/coledb/internal/mvcc"
	"github.com/coledb/coledb/internal/sqlengine"
	"github.com/coledb/coledb/lexer"
	"github.com/coledb/coledb/token"
	"github.com/spf13/cobra"
)

func main() {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "coledb-client",
		Short: "Interactive SQL shell for coledb-server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(fmt.Sprintf("%s:%d", host, port))
		},
	}
	cmd.Flags().StringVarP(&host, "host", "H", "127.0.0.1", "server host")
	cmd.Flags().IntVarP(&port, "port", "p", 7878, "server port")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(addr string) error {
	fmt.Printf("connecting to %s\n", addr)
	client, err := Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()
	fmt.Println(`type "!h" for help`)

	historyPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyPath = filepath.Join(home, ".coledb_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          client.Prompt(),
		HistoryFile:     historyPath,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	if status, err := client.Status(); err == nil {
		fmt.Printf("connected, %d transaction(s) active\n", status.TxnsActive)
	}

	repl(client, rl)
	return nil
}

func repl(client *Client, rl *readline.Instance) {
	var pending strings.Builder

	for {
		rl.SetPrompt(continuationPrompt(client, pending.Len() > 0))
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			pending.Reset()
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			return
		}

		if pending.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), "!") {
			execCommand(client, strings.TrimSpace(line))
			continue
		}

		if pending.Len() > 0 {
			pending.WriteByte('\n')
		}
		pending.WriteString(line)

		if !statementComplete(pending.String()) {
			continue
		}
		stmt := pending.String()
		pending.Reset()
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		execStatement(client, stmt)
	}
}

func continuationPrompt(client *Client, continuing bool) string {
	if continuing {
		return "    -> "
	}
	return client.Prompt()
}

// statementComplete reports whether input lexes to a terminating
// semicolon at the top level, mirroring InputValidator::validate's use
// of the lexer to decide whether a line is ready to submit. An illegal
// character is treated as complete too, so the server's parser -- not
// the REPL -- reports the actual syntax error; input that reaches end
// of input without a semicolon (an unterminated string included) is
// incomplete.
func statementComplete(input string) bool {
	if strings.TrimSpace(input) == "" {
		return false
	}
	l := lexer.New(input)
	for {
		tok := l.NextToken()
		if tok.Type == token.SEMICOLON {
			return true
		}
		if tok.Type == token.EOF {
			return false
		}
		if tok.Type == token.ILLEGAL {
			return true
		}
	}
}

func execCommand(client *Client, cmd string) {
	fields := strings.Fields(cmd)
	switch fields[0] {
	case "!h", "!help":
		fmt.Println(`ctrl+c cancels the current line
!tables        list every table
!table <name>  show one table's definition
!status        show server status
!q, !quit      exit`)
	case "!tables":
		tables, err := client.ListTables()
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		for _, t := range tables {
			fmt.Println(t)
		}
	case "!table":
		if len(fields) < 2 {
			fmt.Println("usage: !table <name>")
			return
		}
		table, err := client.GetTable(fields[1])
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		printTable(table)
	case "!status":
		status, err := client.Status()
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Printf("%+v\n", status)
	case "!q", "!quit":
		os.Exit(0)
	default:
		fmt.Printf("unknown command %q, try !h\n", fields[0])
	}
}

func printTable(table sqlengine.Table) {
	fmt.Printf("table %s\n", table.Name)
	for _, c := range table.Columns {
		tags := []string{c.Type.String()}
		if c.PrimaryKey {
			tags = append(tags, "primary key")
		}
		if c.Nullable {
			tags = append(tags, "null")
		}
		if c.Unique {
			tags = append(tags, "unique")
		}
		if c.Index {
			tags = append(tags, "index")
		}
		if c.HasDefault {
			tags = append(tags, fmt.Sprintf("default %s", c.Default))
		}
		fmt.Printf("  %-16s %s\n", c.Name, strings.Join(tags, " "))
	}
}

func execStatement(client *Client, sql string) {
	result, err := client.Execute(sql)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	printResult(result)
}

func printResult(rs executor.ResultSet) {
	switch rs.Kind {
	case executor.ResultBegin:
		switch rs.Mode.Kind {
		case mvcc.ModeReadWrite:
			fmt.Printf("began transaction %d\n", rs.TxnID)
		case mvcc.ModeReadOnly:
			fmt.Printf("began read-only transaction %d\n", rs.TxnID)
		case mvcc.ModeSnapshot:
			fmt.Printf("began read-only transaction %d in snapshot at version %d\n", rs.TxnID, rs.Mode.Version)
		}
	case executor.ResultCommit:
		fmt.Printf("committed transaction %d\n", rs.TxnID)
	case executor.ResultRollback:
		fmt.Printf("rolled back transaction %d\n", rs.TxnID)
	case executor.ResultCreate:
		fmt.Printf("created %d row(s)\n", rs.Count)
	case executor.ResultDelete:
		fmt.Printf("deleted %d row(s)\n", rs.Count)
	case executor.ResultUpdate:
		fmt.Printf("updated %d row(s)\n", rs.Count)
	case executor.ResultCreateTable:
		fmt.Printf("created table %s\n", rs.Name)
	case executor.ResultDropTable:
		fmt.Printf("dropped table %s\n", rs.Name)
	case executor.ResultExplain:
		fmt.Println(rs.Plan.String())
	case executor.ResultQuery:
		printRows(rs)
	}
}

func printRows(rs executor.ResultSet) {
	headers := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		if c == nil {
			headers[i] = "?"
		} else {
			headers[i] = *c
		}
	}
	fmt.Println(strings.Join(headers, "|"))
	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		fmt.Println(strings.Join(cells, "|"))
	}
}
