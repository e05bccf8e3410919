package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/bloodlink/internal/flagx"
)

var ownFlags = []string{
	"-d", "-u", "-p", "-b", "-g", "-e", "-P", "-j", "-v",
	"-m", "-s", "-w", "-q", "-i", "-l",
}

// parseFlags populates Config fields from command-line flags. See the
// package documentation for the list. Arguments not owned by this package
// are filtered out first; a malformed value panics.
func parseFlags(config *Config, args []string) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicBaseURL, "P", config.S3PublicBaseURL, "public base URL for locators")
	fs.StringVar(&config.JournalPath, "j", config.JournalPath, "attempt journal path")
	fs.StringVar(&config.PreviewDir, "v", config.PreviewDir, "preview directory")
	fs.IntVar(&config.MaxInputSizeMB, "m", config.MaxInputSizeMB, "max input size (MB)")
	fs.Float64Var(&config.MaxSizeMB, "s", config.MaxSizeMB, "compression target (MB)")
	fs.IntVar(&config.MaxWidthOrHeight, "w", config.MaxWidthOrHeight, "longest edge (px)")
	fs.Float64Var(&config.Quality, "q", config.Quality, "encoder quality 0..1")
	fs.DurationVar(&config.StageInterval, "i", config.StageInterval, "stage advancement interval")
	fs.DurationVar(&config.PollInterval, "l", config.PollInterval, "approval poll interval")

	if err := fs.Parse(flagx.FilterArgs(args, ownFlags)); err != nil {
		panic(err)
	}
}
