package driver

// Named vendor profiles. Each constructor returns a fresh value so no caller
// can alter a profile another connection is using.

// StandardMultimeter is a generic SCPI bench multimeter.
func StandardMultimeter() MultimeterDriver {
	return MultimeterDriver{
		DCVoltage:    "MEASure:VOLTage:DC?",
		ACVoltage:    "MEASure:VOLTage:AC?",
		DCCurrent:    "MEASure:CURRent:DC?",
		ACCurrent:    "MEASure:CURRent:AC?",
		Resistance2W: "MEASure:RESistance?",
		Resistance4W: "MEASure:FRESistance?",
	}
}

// StandardPowerSupply is a generic single output SCPI supply.
func StandardPowerSupply() PowerSupplyDriver {
	return PowerSupplyDriver{
		Output:     "OUTPUT",
		DCVoltage:  "VOLTage",
		DCCurrent:  "CURRent",
		PowerRange: "VOLT:RANGe",
		Readback:   StandardMultimeter(),
	}
}

// HPMainframe covers HP/Agilent modular mainframes addressed with SCPI
// channel lists.
func HPMainframe() MultiChannelPowerSupply {
	return MultiChannelPowerSupply{
		PowerSupplyDriver: PowerSupplyDriver{
			Output:     "OUTPUT",
			DCVoltage:  "VOLTage",
			DCCurrent:  "CURRent",
			PowerRange: "VOLT:RANGe",
			Readback:   StandardMultimeter(),
		},
		Addressing: ChannelListAddressing(),
	}
}

// HPMobileCommsSource covers the HP 6631xB mobile communications DC sources.
func HPMobileCommsSource() MultiChannelPowerSupply {
	return MultiChannelPowerSupply{
		PowerSupplyDriver: PowerSupplyDriver{
			Output:     "OUTPUT",
			DCVoltage:  "VOLT",
			DCCurrent:  "CURR",
			PowerRange: "VOLT:RANGe",
			Readback:   StandardMultimeter(),
		},
		ChannelSelector: "DISPLAY:CHANNEL",
		Addressing:      SecondarySuffixAddressing(),
	}
}

// StandardDynamicLoad switches the load mode before every setpoint.
func StandardDynamicLoad() DynamicLoad {
	return DynamicLoad{
		Output:     "OUTPUT",
		DCVoltage:  "MODE:VOLTage:DC;\nVOLTage",
		DCCurrent:  "MODE:CURRent:DC;\nCURRent",
		Resistance: "MODE:RESistance;\nRESistance",
		Readback:   StandardMultimeter(),
	}
}

// RohdeSchwarz covers R&S HMP series supplies, which select the active
// channel with INST:NSEL.
func RohdeSchwarz() MultiChannelPowerSupply {
	return MultiChannelPowerSupply{
		PowerSupplyDriver: PowerSupplyDriver{
			Output:     "OUTPUT",
			DCVoltage:  "VOLTage",
			DCCurrent:  "CURRent",
			PowerRange: "VOLT:RANGe",
			Readback:   StandardMultimeter(),
		},
		ChannelSelector: "INST:NSEL",
		Addressing:      DefaultAddressing(),
	}
}

// TTI covers Aim-TTi CPX/QL/MX supplies.
func TTI() MultiChannelPowerSupply {
	return MultiChannelPowerSupply{
		PowerSupplyDriver: PowerSupplyDriver{
			Output:    "OP",
			DCVoltage: "V",
			DCCurrent: "I",
			Readback: MultimeterDriver{
				DCVoltage: "V",
				DCCurrent: "I",
			},
		},
		Addressing: SuffixAddressing(),
	}
}

// RigolDP832 covers the Rigol DP800 series.
func RigolDP832() MultiChannelPowerSupply {
	return MultiChannelPowerSupply{
		PowerSupplyDriver: PowerSupplyDriver{
			Output:    "OUTP CH[n],",
			DCVoltage: "SOURce[n]:VOLTage",
			DCCurrent: "SOURce[n]:CURRent",
			Readback: MultimeterDriver{
				DCVoltage: "SOURce[n]:VOLTage",
				DCCurrent: "SOURce[n]:CURRent",
			},
		},
		Addressing: PlaceholderAddressing(),
	}
}
