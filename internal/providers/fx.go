package providers

import (
	"github.com/smallbiznis/gstbill/internal/providers/email"
	"github.com/smallbiznis/gstbill/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
