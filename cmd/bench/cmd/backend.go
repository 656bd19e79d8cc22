package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/visa"
)

// createManager builds the resource manager for the selected backend
func createManager(name string) (*visa.Manager, error) {
	switch name {
	case "simulator", "sim":
		logger.Debug("using simulated bench")
		return visa.NewManager(demoBench()), nil

	case "usb", "usbtmc":
		return visa.NewManager(usbBackend()), nil

	case "gpib", "prologix":
		if cfg.Transport.Prologix.Port == "" {
			return nil, fmt.Errorf("gpib backend needs a controller port (--prologix-port or transport.prologix.port)")
		}
		return visa.NewManager(gpibBackend()), nil

	case "serial", "asrl":
		return visa.NewManager(serialBackend()), nil

	case "all":
		backends := []visa.Backend{serialBackend()}
		if cfg.Transport.USB.Enabled {
			backends = append(backends, usbBackend())
		}
		if cfg.Transport.Prologix.Port != "" {
			backends = append(backends, gpibBackend())
		}
		return visa.NewManager(backends...), nil

	default:
		return nil, fmt.Errorf("unknown backend: %s (supported: simulator, usb, gpib, serial, all)", name)
	}
}

func usbBackend() *visa.USBTMCBackend {
	return &visa.USBTMCBackend{Timeout: cfg.Transport.USB.Timeout}
}

func gpibBackend() *visa.PrologixBackend {
	return visa.NewPrologixBackend(cfg.Transport.Prologix.Port, cfg.Transport.Prologix.Addresses...)
}

func serialBackend() *visa.SerialBackend {
	b := visa.NewSerialBackend()
	b.Pattern = cfg.Transport.Serial.DevicePattern
	b.BaudRate = cfg.Transport.Serial.BaudRate
	if cfg.Transport.Serial.ReadTimeout > 0 {
		b.ReadTimeout = cfg.Transport.Serial.ReadTimeout
	}
	return b
}

// demoBench populates a simulated bus with one instrument of each family
// and one whose identification reply cannot be parsed.
func demoBench() *visa.SimBackend {
	bus := visa.NewSimBackend()

	dmm := visa.NewSimInstrument("Keysight Technologies,34461A,MY41000001,A.03.01")
	dmm.Responses["MEASure:VOLTage:DC?"] = "+5.00120000E+00"
	dmm.Responses["MEASure:VOLTage:AC?"] = "+2.30010000E+02"
	dmm.Responses["MEASure:CURRent:DC?"] = "+1.25000000E-01"
	dmm.Responses["MEASure:CURRent:AC?"] = "+0.00000000E+00"
	dmm.Responses["MEASure:RESistance?"] = "+1.00040000E+03"
	dmm.Responses["MEASure:FRESistance?"] = "+9.99870000E+02"
	bus.Add("dmm", dmm)

	psu := visa.NewSimInstrument("RIGOL TECHNOLOGIES,DP832,DP8C000001,00.01.16")
	psu.Responses[instrument.CommandChannelDirectory] = "USB0:CH1;USB0:CH2;USB0:CH3"
	for _, ch := range []string{"1", "2", "3"} {
		psu.Set("SOURce"+ch+":VOLTage", "0.000")
		psu.Set("SOURce"+ch+":CURRent", "1.000")
		psu.Responses["OUTP CH"+ch+",?"] = "0"
	}
	bus.Add("psu", psu)

	load := visa.NewSimInstrument("Chroma ATE,63103A,63103A000042,1.10")
	load.Set("OUTPUT", "0")
	load.Responses["MEASure:VOLTage:DC?"] = "12.004V"
	load.Responses["MEASure:CURRent:DC?"] = "0.998A"
	bus.Add("load", load)

	hmp := visa.NewSimInstrument("Rohde&Schwarz,HMP4040,120000,HW50020001/SW2.51")
	hmp.Set("INST:NSEL", "1")
	hmp.Set("VOLTage", "0.000")
	hmp.Set("OUTPUT", "0")
	hmp.Responses["MEASure:VOLTage:DC?"] = "0.0000"
	hmp.Responses["MEASure:CURRent:DC?"] = "0.0000"
	bus.Add("hmp", hmp)

	bus.Add("legacy", visa.NewSimInstrument("HEWLETT-PACKARD,6632B,0,A.01.05,extra,fields"))
	return bus
}
