package providers

import (
	"github.com/CredenceNG/confirmd-platform/internal/providers/email"
	"github.com/CredenceNG/confirmd-platform/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
