package main

import "github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/cmd"

func main() {
	cmd.Execute()
}
