package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/avoronin/authkeeper/internal/authctl"
)

func main() {

	dsn := flag.String("d", os.Getenv("DATABASE_DSN"), "database connection string")
	email := flag.String("e", "", "email of the admin user to create")
	flag.Parse()

	ctx := context.Background()
	app := authctl.NewApp(*dsn, *email)

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
