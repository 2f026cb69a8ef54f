/*
Package cli provides helpers shared by the calltrace commands: output
formatting (text, JSON, CSV), a progress bar, signal handling and error
types that map to exit codes.

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, table); err != nil {
		return err
	}
*/
package cli
