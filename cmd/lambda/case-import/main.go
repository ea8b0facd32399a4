// Case CSV import Lambda entry point, triggered by S3 uploads
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"case-disposition-engine/internal/handlers"
	"case-disposition-engine/internal/utils"
)

func main() {
	_ = utils.InitLogger("info")
	defer utils.Sync()

	deps, err := handlers.LoadDependencies(context.Background())
	if err != nil {
		panic("Failed to load dependencies: " + err.Error())
	}
	defer deps.Close()

	handler, err := deps.CaseImportHandler()
	if err != nil {
		panic("Failed to create handler: " + err.Error())
	}

	lambda.Start(handler.Handle)
}
